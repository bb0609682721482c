// Package device defines the accelerator backend boundary.
//
// A Device owns buffers that the host cannot address directly. Data crosses
// the boundary only through Upload and Download, both of which are
// synchronous: when they return, the copy is complete.
//
// SQLiteDevice is the emulated accelerator shipped with planverify. Its
// "device memory" is a table in a private SQLite database, so a buffer is
// reachable only through an explicit query, the same way real device memory
// is reachable only through an explicit transfer.
package device
