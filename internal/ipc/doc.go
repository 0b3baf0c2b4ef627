// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and the
// conversions from internal models to wire representations. The server
// embeds the daemon; a Stop request acknowledges first and then runs the
// installed shutdown hook so the daemon process can exit cleanly.
//
// Reuse these types when adding new RPC endpoints to keep the protocol
// stable and compatible with existing command implementations.
package ipc
