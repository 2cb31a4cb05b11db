// Package password hashes and verifies credentials with Argon2id and checks
// replacement passwords against a strength policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify accepts padded and unpadded base64 so that hashes written by other
// Argon2 libraries keep working. NeedsUpgrade reports when a stored hash was
// produced with weaker parameters than the current config.
//
// # Policy
//
// Policy.Validate applies, in order: confirmation match, similarity to the
// username, username under common digit substitutions, then complexity rules.
// It never logs or stores the plaintext.
package password
