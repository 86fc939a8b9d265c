package memstore

import (
	"testing"

	"github.com/onoff-automations/schedule-modes/internal/store"
	"github.com/onoff-automations/schedule-modes/internal/store/storetest"
)

func TestMemStoreCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
