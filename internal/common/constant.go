// Package common contains shared constants and sentinel errors used across
// CallShield components.
package common

// ClientVersionHeaderName is the gRPC metadata key carrying the client build
// version on outbound requests. It never carries device identity.
const ClientVersionHeaderName = "x-callshield-client"

// MaxSyncRetries is the number of failed transmissions after which a queued
// item is discarded.
const MaxSyncRetries = 5
