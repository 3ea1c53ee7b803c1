// Package tui is the terminal front end of the configuration wizard.
//
// It is a thin Bubble Tea view over internal/wizard and internal/document:
// every rule about what may be typed, when a page may be left and when a
// configuration may be submitted lives in those packages. The screens here
// only render their state and forward keystrokes as document mutations.
//
// Screens:
//   - Discovery: mDNS scan results or a typed node address. The address
//     field is reformatted as IPv4 on every keystroke.
//   - Editor: the three wizard pages (identity, default rules, schedule).
//     Fields the controller reports as highlighted render in red.
//   - Dashboard: live instance status streamed over a websocket.
//
// Bubble Tea runs commands on their own goroutines. The editor never touches
// the document from a command except during submission, when it ignores
// input until the upload returns.
package tui
