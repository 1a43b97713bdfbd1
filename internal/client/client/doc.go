// Package client is the device side of the community transport.
//
// Client is the contract the sync and reputation layers depend on. GRPCClient
// implements it over callshield.v1.ReputationService, compressing JSON
// documents with internal/compress and mapping gRPC status codes onto the
// sentinel errors in internal/common:
//
//	Unavailable, DeadlineExceeded  -> common.ErrNetwork
//	NotFound                       -> common.ErrorNotFound
//	InvalidArgument                -> common.ErrValidation
//	anything else                  -> common.ErrServer
package client
