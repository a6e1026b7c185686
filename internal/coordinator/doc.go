// Package coordinator executes alarm transitions against the alarm service.
//
// Guard notification is a two-step saga: the notification is delivered
// first and the NOTIFIED status is committed only after it succeeded. A
// failed delivery aborts before any status call. A failed commit after a
// delivered notification rolls the local record back to PENDING and reports
// that the guard was already notified. Dismiss and resolve commit the status
// and then stop the camera speaker on a best-effort basis.
package coordinator
