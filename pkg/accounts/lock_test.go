package accounts

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/teller/pkg/adapters/memory"
	"github.com/aretw0/teller/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("account-%d", i)
		_ = mgr.Save(ctx, &domain.Account{ID: id})
		_ = mgr.Delete(ctx, id)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
