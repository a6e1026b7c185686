// Package access implements the role gate consulted before every protected
// view or state-changing action, and the table of home destinations each
// role is routed to after login or a completed transition.
package access
