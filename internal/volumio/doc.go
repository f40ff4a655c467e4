// Package volumio maintains a persistent command session to a Volumio
// media server.
//
// The session speaks the Socket.IO protocol over a WebSocket transport:
// commands are emitted as event frames, acknowledgements are correlated
// by id, and the server's pushState broadcasts keep a local snapshot of
// the player. The keepalive exchange and reconnection with capped
// exponential backoff run in the background; callers only ever see
// Emit, State and the connection callbacks.
//
// Commands emitted while the session is down are dropped with a warning.
// Queueing them would replay stale commands onto a player whose state
// has long moved on.
package volumio
