// Package schedule drives the radio auto-start cron.
//
// ValidateCron and Upcoming check an expression and preview when it fires.
// Every runs a function on each tick until its context is done.
package schedule
