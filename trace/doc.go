// Package trace reconstructs script call stacks and reports fatal runtime
// errors.
//
// Capture turns the VM's raw frames into user-visible frames named after
// the members they execute. The Reporter writes a "RUNTIME ERROR" block with
// the VM stack dump, the message and the trace, then exits the process.
package trace
