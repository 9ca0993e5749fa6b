// Package notify reports job outcomes to healthchecks.io and by email.
//
// Notification failures never fail a job: they are logged and dropped.
package notify
