// Package password hashes and verifies credentials.
//
// New hashes use bcrypt (cost 12 by default) or Argon2id. Verification
// dispatches on the hash prefix, so stored hashes stay valid when the
// algorithm or cost changes:
//
//	$2b$<cost>$<salt+hash>                               bcrypt
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>   Argon2id (PHC)
//
// [Hasher.NeedsRehash] reports hashes produced with a different algorithm or
// weaker parameters so the caller can re-hash after a successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
