package stock_test

import (
	"os"
	"testing"

	"github.com/gruntwork-io/actiontree/runner"
)

func TestMain(m *testing.M) {
	runner.InitWorker()

	os.Exit(m.Run())
}
