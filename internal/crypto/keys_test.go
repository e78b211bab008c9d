package crypto

import (
	"bytes"
	"crypto/ed25519"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	k, err := GenerateNodeKey()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "keys", "node_key.json")
	if err := k.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadNodeKey(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got.Pub, k.Pub) || !bytes.Equal(got.Priv, k.Priv) {
		t.Fatal("loaded key differs from saved key")
	}
	if !bytes.Equal(got.NodeID(), k.NodeID()) {
		t.Fatal("node id changed across save/load")
	}
}

func TestPublicBytesParse(t *testing.T) {
	k, _ := GenerateNodeKey()
	pk, err := ParsePublicBytes(k.PublicBytes())
	if err != nil {
		t.Fatalf("ParsePublicBytes: %v", err)
	}
	if pk.Type() != "ssh-ed25519" {
		t.Fatalf("unexpected key type %s", pk.Type())
	}
}

func TestSignerMatchesPublicKey(t *testing.T) {
	k, _ := GenerateNodeKey()
	pub, ok := k.Signer().Public().(ed25519.PublicKey)
	if !ok || !bytes.Equal(pub, k.Pub) {
		t.Fatal("signer public key mismatch")
	}
	msg := []byte("ring")
	if !ed25519.Verify(k.Pub, msg, k.Sign(msg)) {
		t.Fatal("signature does not verify")
	}
}

func TestNodeID(t *testing.T) {
	k, _ := GenerateNodeKey()
	id := k.NodeID()
	if len(id) != IDSize {
		t.Fatalf("node id size %d", len(id))
	}
	if !VerifyNodeID(id, k.PublicBytes()) {
		t.Fatal("VerifyNodeID rejected own id")
	}
	other, _ := GenerateNodeKey()
	if VerifyNodeID(id, other.PublicBytes()) {
		t.Fatal("VerifyNodeID accepted foreign key")
	}
}

func TestDataIDIsDoubleHash(t *testing.T) {
	a := DataID([]byte("block"))
	b := DataID([]byte("block"))
	if !bytes.Equal(a, b) {
		t.Fatal("DataID not deterministic")
	}
	if bytes.Equal(a, NodeIDFromPublicBytes([]byte("block"))) {
		t.Fatal("DataID should not equal single hash")
	}
}
