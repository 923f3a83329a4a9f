package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/config"
)

func writeConfig(dir, data string) {
	ExpectWithOffset(1, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600)).To(Succeed())
}

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	Describe("LoadConfig", func() {
		It("returns defaults when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("keeps file values and fills the rest from defaults", func() {
			writeConfig(tmpDir, `version = 0

[vector_store]
provider = "sqlite"
target = "/tmp/vectors.sqlite"

[search]
limit = 10
score_threshold = 0.35

[agent]
default_name = "CZ AI"
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
			Expect(cfg.VectorStore.Target).To(Equal("/tmp/vectors.sqlite"))
			Expect(cfg.Search.Limit).To(Equal(uint(10)))
			Expect(cfg.Search.ScoreThreshold).To(BeNumerically("~", 0.35, 1e-9))
			Expect(cfg.Agent.DefaultName).To(Equal("CZ AI"))

			defaults := config.NewDefaultConfig()
			Expect(cfg.Search.TopN).To(Equal(defaults.Search.TopN))
			Expect(cfg.VectorStore.Collection).To(Equal(defaults.VectorStore.Collection))
			Expect(cfg.LLM.Temperature).To(Equal(defaults.LLM.Temperature))
			Expect(cfg.Agent.DefaultThreadID).To(Equal("1234"))
		})

		It("returns an error for malformed TOML", func() {
			writeConfig(tmpDir, "[[[ nope")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("rejects unsupported versions", func() {
			writeConfig(tmpDir, "version = 7\n")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists string keys", func() {
			Expect(c.SetConfigValue("conversation.provider", "redis")).To(Succeed())

			v, err := c.GetConfigValue("conversation.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("redis"))
		})

		It("persists numeric and boolean keys", func() {
			Expect(c.SetConfigValue("search.top_n", "3")).To(Succeed())
			Expect(c.SetConfigValue("llm.temperature", "0.2")).To(Succeed())
			Expect(c.SetConfigValue("mcp.enabled", "true")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Search.TopN).To(Equal(uint(3)))
			Expect(cfg.LLM.Temperature).To(BeNumerically("~", 0.2, 1e-9))
			Expect(cfg.MCP.Enabled).To(BeTrue())
		})

		It("preserves earlier values", func() {
			Expect(c.SetConfigValue("profile.driver", "postgres")).To(Succeed())
			Expect(c.SetConfigValue("profile.table", "personas")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Profile.Driver).To(Equal("postgres"))
			Expect(cfg.Profile.Table).To(Equal("personas"))
		})

		It("rejects invalid values", func() {
			Expect(c.SetConfigValue("search.limit", "many")).To(MatchError(ContainSubstring("invalid value for search.limit")))
			Expect(c.SetConfigValue("telegram.enabled", "maybe")).To(MatchError(ContainSubstring("invalid value for telegram.enabled")))
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
			_, err := c.GetConfigValue("nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("returns empty for keys without a default", func() {
			v, err := c.GetConfigValue("profile.dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})
	})

	Describe("SaveConfig", func() {
		It("refuses a nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})

		It("round-trips a preset", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			preset, err := config.PresetConfig("local")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(preset)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(preset))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("lists every key once and only valid keys", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(ContainElements("api.listen", "vector_store.collection", "search.top_n", "llm.temperature", "profile.table"))

		seen := map[string]bool{}
		for _, k := range keys {
			Expect(seen[k]).To(BeFalse(), k)
			seen[k] = true
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
		Expect(config.IsValidConfigKey("storage.sqlite_path")).To(BeFalse())
	})

	It("keeps a stable order", func() {
		Expect(config.ValidConfigKeys()).To(Equal(config.ValidConfigKeys()))
		Expect(config.ValidConfigKeys()[0]).To(Equal("log.level"))
	})
})

var _ = Describe("PresetConfig", func() {
	It("builds the local preset", func() {
		cfg, err := config.PresetConfig("LOCAL")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
		Expect(cfg.Conversation.Provider).To(Equal("memory"))
		Expect(cfg.Profile.Driver).To(Equal("sqlite"))
		Expect(cfg.Rerank.Provider).To(Equal("none"))
	})

	It("builds the production preset", func() {
		cfg, err := config.PresetConfig("production")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.EventStream.Provider).To(Equal("kafka"))
		Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
	})

	It("rejects unknown presets", func() {
		_, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(config.ValidPresetNames()).To(ConsistOf("local", "production", "openai"))
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("matches the retrieval and persona defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Search.Limit).To(Equal(uint(7)))
		Expect(cfg.Search.TopN).To(Equal(uint(5)))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(cfg.LLM.Temperature).To(Equal(0.9))
		Expect(cfg.Agent.DefaultName).To(Equal("MISS CHINA AI"))
		Expect(cfg.Agent.HistoryMessages).To(Equal(uint(2)))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	It("returns defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("api.listen")).To(Equal(":7888"))
		Expect(v.GetUint("search.limit")).To(Equal(uint(7)))
	})

	It("reads file values over defaults", func() {
		writeConfig(tmpDir, "[api]\nlisten = \":9000\"\n")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("api.listen")).To(Equal(":9000"))
	})

	It("prefers XELEB_ environment variables over the file", func() {
		writeConfig(tmpDir, "[conversation]\nprovider = \"mongo\"\n")
		GinkgoT().Setenv("XELEB_CONVERSATION_PROVIDER", "redis")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("conversation.provider")).To(Equal("redis"))
	})

	It("honors legacy unprefixed variables", func() {
		GinkgoT().Setenv("MONGODB_URI", "mongodb://mongo:27017")
		GinkgoT().Setenv("QDRANT_COLLECTION_NAME", "celebs")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("conversation.uri")).To(Equal("mongodb://mongo:27017"))
		Expect(v.GetString("vector_store.collection")).To(Equal("celebs"))
	})

	It("resolves a typed Config", func() {
		writeConfig(tmpDir, "[search]\ntop_n = 2\n[llm]\ntemperature = 0.4\n")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Resolve(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Search.TopN).To(Equal(uint(2)))
		Expect(cfg.Search.Limit).To(Equal(uint(7)))
		Expect(cfg.LLM.Temperature).To(BeNumerically("~", 0.4, 1e-9))
	})
})

var _ = Describe("LoadDotEnv", func() {
	It("loads variables without overriding existing ones", func() {
		dir, err := os.MkdirTemp("", "dotenv-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		path := filepath.Join(dir, ".env")
		Expect(os.WriteFile(path, []byte("XELEB_TEST_A=from-file\nXELEB_TEST_B=from-file\n"), 0o600)).To(Succeed())
		GinkgoT().Setenv("XELEB_TEST_B", "from-env")
		DeferCleanup(func() { os.Unsetenv("XELEB_TEST_A") })

		Expect(config.LoadDotEnv(path, filepath.Join(dir, "missing.env"))).To(Succeed())
		Expect(os.Getenv("XELEB_TEST_A")).To(Equal("from-file"))
		Expect(os.Getenv("XELEB_TEST_B")).To(Equal("from-env"))
	})
})

var _ = Describe("Flags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	It("binds a set flag over the config file", func() {
		writeConfig(tmpDir, "[api]\nlisten = \":5555\"\n")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Registry, config.FlagAPIListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to the config file when the flag is unset", func() {
		writeConfig(tmpDir, "[api]\nlisten = \":5555\"\n")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Registry, config.FlagAPIListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagAPIListen, "nonexistent"})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("takes defaults, shorthands and usage from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var topN uint
		var mcp bool
		var target string
		config.AddUintFlag(cmd, config.Registry, config.FlagSearchTopN, &topN)
		config.AddBoolFlag(cmd, config.Registry, config.FlagMCP, &mcp)
		config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &target)

		f := cmd.Flags().Lookup("top-n")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("k"))
		Expect(f.DefValue).To(Equal("5"))

		Expect(cmd.Flags().Lookup("mcp").DefValue).To(Equal("false"))
		Expect(cmd.Flags().Lookup("api-target").DefValue).To(Equal("http://localhost:7888"))
	})
})
