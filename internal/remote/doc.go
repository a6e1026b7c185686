// Package remote contains the adapters for the services the console talks to.
//
// Client wraps the alarm service REST API and the LAN speaker endpoint. Every
// call runs under its own timeout so a hung server surfaces as an error rather
// than a request that never returns. Subscriber follows the Socket.IO push
// channel over a websocket and hands every new_alarm event to a callback.
package remote
