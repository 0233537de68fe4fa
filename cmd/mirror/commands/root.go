package commands

import (
	"github.com/mirrornet/mirror/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for the mirror ingestor
var RootCmd = &cobra.Command{
	Use:              "mirror",
	Short:            "stream file mirror ingestor",
	TraverseChildren: true,
}
