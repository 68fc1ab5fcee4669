package ports

// SecurityPort encrypts and decrypts sensitive data at rest.
type SecurityPort interface {
	// Encrypt returns the nonce followed by the sealed ciphertext.
	Encrypt(plaintext []byte) (ciphertext []byte, err error)

	// Decrypt reverses Encrypt. It fails on tampered input.
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}
