package cmd

import (
	"weradio/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动WeRadio服务器",
	Long:  `启动WeRadio电台节点。producer角色驱动编码管线，reader角色只读取复制状态。`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
