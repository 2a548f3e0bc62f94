// Package tokenstore provides persistent storage backends for the serialized
// credential record.
//
// Two backends are supported:
//   - File: a single file under the user's configuration directory, written
//     atomically with owner-only permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential
//     Manager, Linux Secret Service)
//
// Backends store opaque bytes. Encryption and schema checks belong to the caller.
package tokenstore
