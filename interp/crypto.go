package interp

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.Encrypt, opEncrypt)
	register(opcode.Decrypt, opDecrypt)
	register(opcode.CryptoSign, opCryptoSign)
	register(opcode.CryptoSignVerify, opCryptoSignVerify)
}

// encryptionKey stretches an arbitrary passphrase to the 32 bytes
// XChaCha20-Poly1305 wants.
func encryptionKey(passphrase string) []byte {
	sum := blake2b.Sum256([]byte(passphrase))
	return sum[:]
}

// opEncrypt seals plaintext under a passphrase. The nonce is derived
// from the key and plaintext (SIV style) so the same inputs always
// produce the same ciphertext, which keeps entity evaluation
// deterministic; the nonce travels with the ciphertext.
func opEncrypt(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, plaintext := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	keyOk, passphrase := ip.InterpretIntoString(child(n, 1))
	if !keyOk {
		return graph.Null
	}
	key := encryptionKey(passphrase)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return graph.Null
	}
	h, err := blake2b.New(chacha20poly1305.NonceSizeX, key)
	if err != nil {
		return graph.Null
	}
	h.Write([]byte(plaintext))
	nonce := h.Sum(nil)
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return ip.allocString(base64.StdEncoding.EncodeToString(sealed))
}

func opDecrypt(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, encoded := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	keyOk, passphrase := ip.InterpretIntoString(child(n, 1))
	if !keyOk {
		return graph.Null
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < chacha20poly1305.NonceSizeX {
		return graph.Null
	}
	aead, err := chacha20poly1305.NewX(encryptionKey(passphrase))
	if err != nil {
		return graph.Null
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return graph.Null
	}
	return ip.allocString(string(plaintext))
}

// opCryptoSign produces a keyed BLAKE2b MAC over the message, hex
// encoded.
func opCryptoSign(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, message := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	keyOk, passphrase := ip.InterpretIntoString(child(n, 1))
	if !keyOk {
		return graph.Null
	}
	h, err := blake2b.New256(encryptionKey(passphrase))
	if err != nil {
		return graph.Null
	}
	h.Write([]byte(message))
	return ip.allocString(hex.EncodeToString(h.Sum(nil)))
}

func opCryptoSignVerify(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, message := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return ip.allocBool(false)
	}
	keyOk, passphrase := ip.InterpretIntoString(child(n, 1))
	if !keyOk {
		return ip.allocBool(false)
	}
	sigOk, signature := ip.InterpretIntoString(child(n, 2))
	if !sigOk {
		return ip.allocBool(false)
	}
	h, err := blake2b.New256(encryptionKey(passphrase))
	if err != nil {
		return ip.allocBool(false)
	}
	h.Write([]byte(message))
	want := hex.EncodeToString(h.Sum(nil))
	return ip.allocBool(subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1)
}
