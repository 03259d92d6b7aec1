// Package cryptor provides the session ciphers used to seal ENCRYPTED frames.
//
// Two implementations satisfy interfaces.ICipher:
//
//   - AEADCipher seals each chunk with ChaCha20-Poly1305 under a pre-shared key,
//     using independent implicit counter nonces for each direction.
//   - NoiseCipher is produced by a completed Noise XX Handshake and uses the
//     transport cipher states negotiated during the handshake.
//
// Both add exactly limits.EncryptionOverhead bytes to every chunk, report it
// through SealedSize, and require chunks to be opened in the order they were
// sealed, which the frame layer guarantees on a single link.
//
//	hs, _ := cryptor.NewHandshake(cryptor.Initiator, cryptor.DHKey{})
//	msg1, _ := hs.WriteMessage(nil)
//	// ... exchange messages with the peer ...
//	cipher, _ := hs.Cipher()
//	sender.SetCryptor(cipher)
package cryptor
