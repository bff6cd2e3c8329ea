package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/betbot/spreadbot/pkg/secretstore"
	"github.com/betbot/spreadbot/pkg/wallet"
)

// wallet-init：把交易私钥写入加密的 secretstore。
// 支持两种输入：直接粘贴私钥，或输入助记词现场派生。
// bot 启动时配置 secretstore 路径即可免明文私钥运行。

func main() {
	var (
		dbPath    = flag.String("store", getenv("SPREADBOT_SECRETSTORE_PATH", "data/secrets.badger"), "secretstore 路径")
		secretKey = flag.String("key", getenv("SPREADBOT_SECRETSTORE_KEY", ""), "secretstore 加密密钥（32 字节 base64/hex）")
		mnemonic  = flag.Bool("mnemonic", false, "输入助记词派生私钥（默认直接输入私钥）")
		path      = flag.String("path", wallet.DefaultDerivationPath, "派生路径（仅 -mnemonic）")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("缺少加密密钥：设置 SPREADBOT_SECRETSTORE_KEY 或传 -key"))
	}

	var privateKeyHex string
	if *mnemonic {
		fmt.Fprintln(os.Stderr, "请输入助记词（12/15/18/21/24 个单词），回车结束：")
		mn := strings.TrimSpace(readLine())
		if mn == "" {
			fatal(fmt.Errorf("助记词为空"))
		}
		derived, err := wallet.FromMnemonic(mn, *path)
		if err != nil {
			fatal(err)
		}
		privateKeyHex = derived.PrivateKeyHex
		fmt.Fprintf(os.Stderr, "派生地址：%s\n", derived.Address)
	} else {
		fmt.Fprintln(os.Stderr, "请输入私钥（hex），回车结束：")
		privateKeyHex = strings.TrimSpace(readLine())
		if privateKeyHex == "" {
			fatal(fmt.Errorf("私钥为空"))
		}
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		ReadOnly:      false,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if err := ss.SetString("private_key", privateKeyHex); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "已写入 %s（key=private_key）\n", *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
