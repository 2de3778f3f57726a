// Package password hashes and verifies admin passwords.
//
// New hashes are argon2id in PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Hashes written by the previous admin backend are bcrypt ($2a$/$2b$/$2y$).
// They keep verifying, and [Hasher.NeedsUpgrade] reports them so callers can
// re-hash after a successful login.
//
// # What this package must NOT do
//
//   - Store or look up passwords.
//   - Log plaintext passwords or hashes.
package password
