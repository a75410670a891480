package memory_test

import (
	"testing"

	"github.com/aretw0/teller/pkg/adapters/memory"
	"github.com/aretw0/teller/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunAccountStoreContract(t, store)
}
