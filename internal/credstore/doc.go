// Package credstore owns the Quip API token on the local machine.
//
// GetToken resolves a validated token through a fixed priority order:
//
//  1. the encrypted record written by a previous run
//  2. plaintext tokens left in shell configuration files by older releases,
//     migrated into the encrypted record after confirmation
//  3. interactive setup
//
// The record is encrypted with AES-256-GCM under a key derived from the machine
// name, OS user and home directory. The key is never stored, so a record copied
// to another machine or account cannot be decrypted and is discarded there.
//
// Storage and decryption failures never reach the caller. They delete the
// record and fall through to the next source. The only error crossing the
// package boundary is ErrCredentialUnavailable.
package credstore
