// Package codec classifies, validates, renders and converts untrusted message
// payloads. All functions are pure and stateless: payloads can be processed
// concurrently without synchronization, and no input may cause a panic or an
// unrecoverable error.
package codec
