// Package engine provides the backends that move images between a local
// image store and the staging registry, and control the registry's own
// container.
//
// Two transports exist: [Docker] drives a container engine through its
// API socket and also implements container restart and in-container
// garbage collection; [CopyTool] shells out to skopeo for hosts without a
// usable engine socket. Callers probe availability and fall back, ending
// at API-direct operation (no transport at all) when neither works.
package engine
