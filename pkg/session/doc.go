/*
Package session keeps the live editing sessions of a process.

A Manager creates editor machines, restores them from a StateStore on first access,
and saves a snapshot after every accepted transition. Creation, restoration and
deletion of one session are serialized by a reference-counted local lock and,
when configured, a DistributedLocker shared by all server replicas.
*/
package session
