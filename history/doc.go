// Package history holds pure functions over conversation message sequences:
// sanitizing unanswered action requests and selecting budget windows that
// never split a request from its results.
package history
