package device

import (
	"errors"
	"sync"
	"testing"
)

func testRecord(id string) Record {
	return Record{ID: id, Name: "Stream Deck", Rows: 3, Columns: 5, Encoders: 2}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("", testRecord("sd-ABC")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := reg.Get("sd-ABC")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.KeyCount() != 15 {
		t.Errorf("KeyCount() = %d, want 15", got.KeyCount())
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("sd-missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Namespace(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("com.example.deck", testRecord("sd-ABC")); !errors.Is(err, ErrNamespaceDenied) {
		t.Fatalf("Register() unclaimed error = %v, want ErrNamespaceDenied", err)
	}

	reg.ClaimNamespace("sd", "com.example.deck")

	if err := reg.Register("com.example.deck", testRecord("sd-ABC")); err != nil {
		t.Fatalf("Register() owner error = %v", err)
	}
	if err := reg.Register("com.other", testRecord("sd-DEF")); !errors.Is(err, ErrNamespaceDenied) {
		t.Errorf("Register() other plugin error = %v, want ErrNamespaceDenied", err)
	}
	if _, err := reg.Deregister("com.other", "sd-ABC"); !errors.Is(err, ErrNamespaceDenied) {
		t.Errorf("Deregister() other plugin error = %v, want ErrNamespaceDenied", err)
	}

	got, _ := reg.Get("sd-ABC")
	if got.Plugin != "com.example.deck" {
		t.Errorf("Plugin = %q, want %q", got.Plugin, "com.example.deck")
	}
}

func TestRegistry_Deregister(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register("", testRecord("sd-ABC"))

	removed, err := reg.Deregister("", "sd-ABC")
	if err != nil || !removed {
		t.Fatalf("Deregister() = %v, %v; want true, nil", removed, err)
	}

	removed, err = reg.Deregister("", "sd-ABC")
	if err != nil || removed {
		t.Errorf("second Deregister() = %v, %v; want false, nil", removed, err)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"sd-C", "sd-A", "sd-B"} {
		_ = reg.Register("", testRecord(id))
	}

	list := reg.List()
	if len(list) != 3 || list[0].ID != "sd-A" || list[2].ID != "sd-C" {
		t.Errorf("List() order = %v", list)
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{name: "valid", rec: testRecord("sd-ABC")},
		{name: "short id", rec: testRecord("s"), wantErr: true},
		{name: "dot in id", rec: testRecord("sd.ABC"), wantErr: true},
		{name: "negative rows", rec: Record{ID: "sd-A", Rows: -1}, wantErr: true},
		{name: "too many keys", rec: Record{ID: "sd-A", Rows: 20, Columns: 20}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_Coordinates(t *testing.T) {
	rec := testRecord("sd-ABC")

	tests := []struct {
		encoder  bool
		position int
		row, col int
	}{
		{false, 0, 0, 0},
		{false, 4, 0, 4},
		{false, 7, 1, 2},
		{false, 14, 2, 4},
		{true, 1, 0, 1},
	}

	for _, tt := range tests {
		row, col := rec.Coordinates(tt.encoder, tt.position)
		if row != tt.row || col != tt.col {
			t.Errorf("Coordinates(%v, %d) = (%d, %d), want (%d, %d)", tt.encoder, tt.position, row, col, tt.row, tt.col)
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for _, id := range []string{"sd-A", "sd-B", "sd-C", "sd-D"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = reg.Register("", testRecord(id))
				_, _ = reg.Get(id)
				_ = reg.List()
			}
		}(id)
	}
	wg.Wait()

	if reg.Count() != 4 {
		t.Errorf("Count() = %d, want 4", reg.Count())
	}
}
