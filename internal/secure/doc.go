// Package secure keeps freshly issued secret access keys out of plain Go memory.
//
// A secret access key exists in plaintext only twice: when the directory
// returns it and when it is rendered into the owner notification. In between
// it lives in a memguard enclave, encrypted with XSalsa20Poly1305 and
// protected from swapping where mlock is available.
//
//	buf := secure.NewSecureString(secretAccessKey)
//	defer buf.Destroy()
//
//	plaintext, err := buf.Reveal()
//
// Call secure.Purge before the process exits. The Lambda handler purges at the
// end of every invocation.
package secure
