package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"weradio/cluster"
	"weradio/config"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试复制通道的Redis连接是否成功，并进行基本读写操作。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始测试Redis连接...")

		cfg := config.Load()
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		bus := cluster.NewRedisBus(cluster.RedisOptions{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := bus.Set(ctx, "weradio:selftest", "ok", time.Minute); err != nil {
			log.Fatalf("Redis写入测试失败: %v", err)
		}
		val, err := bus.Get(ctx, "weradio:selftest")
		if err != nil || val != "ok" {
			log.Fatalf("Redis读取测试失败: %v (val=%q)", err, val)
		}

		fmt.Println("Redis基本操作测试成功！")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
