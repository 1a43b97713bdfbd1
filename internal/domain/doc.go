// Package domain holds the reputation types shared by the client and the
// community server, together with the deterministic merge used to reconcile
// two replicas of the same record.
//
// Everything here is plain data: no I/O, no clocks. The JSON forms are the
// wire format carried (zstd-compressed) inside gRPC envelopes.
package domain
