package main

import (
	"fmt"

	"github.com/RecoveryAshes/webcrawler/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "配置管理",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "以YAML格式显示生效的配置(含默认值和环境变量覆盖)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := appConfig.YAML()
			if err != nil {
				return err
			}
			if appConfig.File() != "" {
				fmt.Printf("# 配置文件: %s\n", appConfig.File())
			} else {
				fmt.Println("# 未找到配置文件,使用默认值")
			}
			fmt.Print(string(out))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "生成带注释的默认配置文件",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}

			created, err := config.EnsureConfigExists(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("✅ 已生成配置文件: %s\n", path)
			} else {
				fmt.Printf("配置文件已存在: %s\n", path)
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}
