package main

import (
	"context"
	"fldoe-standards/cmd/cpalms-cli/commands"
	"fldoe-standards/lib/osutil"
	"fldoe-standards/lib/serviceutil"
	"fldoe-standards/lib/telemetry"
	"fmt"
	"os"
	"time"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())

	tel, err := telemetry.SetupFromEnv(ctx, "cpalms-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}

	err = commands.ExecuteContext(ctx)
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
		fmt.Fprintln(os.Stderr, "failed to flush telemetry:", shutdownErr)
	}

	if err != nil {
		serviceutil.Fatal("command failed", err)
	}
}
