package repository

import (
	"os"
	"testing"

	"github.com/adeolu/wallet-multicurrency/internal/testutil/dblock"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}
