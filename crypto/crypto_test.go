package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"testing"
)

func sealWithKey(t *testing.T, key, plaintext, aad []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher() error = %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("cipher.NewGCM() error = %v", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}
	return append(nonce, gcm.Seal(nil, nonce, plaintext, aad)...)
}

func TestGCMDecryptorRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	plaintext := []byte("row group metadata bytes")
	aad := []byte("file-aad|footer")

	ciphertext := sealWithKey(t, key, plaintext, aad)

	dec, err := NewGCMDecryptor(key)
	if err != nil {
		t.Fatalf("NewGCMDecryptor() error = %v", err)
	}
	got, err := dec.Decrypt(ciphertext, aad)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestGCMDecryptorRejectsWrongAAD(t *testing.T) {
	key := make([]byte, 16)
	ciphertext := sealWithKey(t, key, []byte("secret"), []byte("correct-aad"))

	dec, err := NewGCMDecryptor(key)
	if err != nil {
		t.Fatalf("NewGCMDecryptor() error = %v", err)
	}
	if _, err := dec.Decrypt(ciphertext, []byte("wrong-aad")); err == nil {
		t.Fatal("Decrypt() succeeded with a mismatched AAD")
	}
}

func TestGCMDecryptorRejectsShortCiphertext(t *testing.T) {
	dec, err := NewGCMDecryptor(make([]byte, 16))
	if err != nil {
		t.Fatalf("NewGCMDecryptor() error = %v", err)
	}
	if _, err := dec.Decrypt([]byte("short"), nil); err == nil {
		t.Fatal("Decrypt() succeeded with ciphertext shorter than the nonce")
	}
}

func TestAADBuilderFileAAD(t *testing.T) {
	b := NewAADBuilder([]byte("prefix-"), []byte("unique"))
	want := "prefix-unique"
	if got := string(b.FileAAD()); got != want {
		t.Fatalf("FileAAD() = %q, want %q", got, want)
	}
}

func TestModuleAADSetPageOrdinal(t *testing.T) {
	b := NewAADBuilder(nil, []byte("file-unique"))
	aad := b.DataPageHeaderAAD(1, 2)

	base := append([]byte{}, aad.Bytes()...)
	aad.SetPageOrdinal(5)
	if len(aad.Bytes()) != len(base) {
		t.Fatalf("SetPageOrdinal changed the AAD length: %d != %d", len(aad.Bytes()), len(base))
	}

	aad.SetPageOrdinal(6)
	second := append([]byte{}, aad.Bytes()...)
	aad.SetPageOrdinal(5)
	third := aad.Bytes()
	if string(second) == string(third) {
		t.Fatal("SetPageOrdinal did not change the AAD's page-ordinal suffix")
	}
}

func TestModuleAADWithoutPageOrdinalIsStable(t *testing.T) {
	b := NewAADBuilder(nil, []byte("file-unique"))
	aad := b.ColumnIndexAAD(0, 0)
	before := append([]byte{}, aad.Bytes()...)
	aad.SetPageOrdinal(99)
	if string(aad.Bytes()) != string(before) {
		t.Fatal("SetPageOrdinal mutated an AAD with no page-ordinal suffix")
	}
}
