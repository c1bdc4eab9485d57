// Package models holds the plain data types shared by the cache, the store,
// the transport and the client: record keys, raw records, mutation
// operations, collection query shapes, and record id parsing.
//
// None of these types know about transactions or caching. An [Operation] is
// pure data until it is handed to a transport.
package models
