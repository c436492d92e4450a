package cmd

import (
	"fmt"
	"log"

	"weradio/config"
	"weradio/storage"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "存储后端检查",
	Long:  `检查音乐库存储后端（本地文件系统或MinIO对象存储），并列出当前库中的文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		store, err := storage.New(cfg)
		if err != nil {
			log.Fatalf("无法初始化存储后端: %v", err)
		}

		files, err := store.List(storage.FolderLibrary, nil)
		if err != nil {
			log.Fatalf("列出文件失败: %v", err)
		}

		fmt.Printf("存储后端就绪，库中共有 %d 个文件:\n", len(files))
		for _, f := range files {
			fmt.Println("  ", f)
		}
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)
}
