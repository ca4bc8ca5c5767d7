// Package api is the network surface of OpenDeck Core.
//
// It serves three kinds of client:
//   - Plugins and property inspectors connect to the plugin socket
//     (default /plugin). The first frame registers the connection with
//     the message bus; later frames are settings, state and relay events
//     routed into the router, and device driver traffic handed to the
//     deck bridge.
//   - UI clients connect to /api/v1/ws and receive the notifications the
//     router emits, on the channels they subscribe to.
//   - REST clients manage devices, profiles and instances under /api/v1
//     and read the audit trail.
//
// The server follows the same lifecycle as the other components:
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
//
// The service listens on localhost. Plugins identify themselves by uuid
// in the registration frame; there is no user authentication.
package api
