// Package password implements argon2id hashing in PHC string format, plus the
// registration password policy.
//
// # Design
//
// Hashes are salted per record and compared in constant time. Parameters are
// embedded in the PHC string, so the active configuration can be strengthened
// without invalidating stored hashes; [Argon2.NeedsUpgrade] reports when a
// stored hash is weaker than the current configuration and should be rewritten
// on the next successful verification.
//
// # What this package must NOT do
//
//   - Store, log, or return plaintext passwords.
//   - Compare digests with non-constant-time operations.
package password
