// Package adapter connects the application services to the persistence
// implementations and the calendar client.
package adapter
