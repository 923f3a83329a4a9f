package agentscmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	agentscmder "github.com/xeleb-ai/xeleb/cmd/xeleb/agents"
	"github.com/xeleb-ai/xeleb/pkg/profile"
)

const missChina = `{
  "identity": {"agentName": "MISS CHINA AI", "bio": "Crowned Miss China in 2018."},
  "behavior": {"topic": ["pageants", "fashion"], "personality_traits": ["warm"]},
  "rules": ["stay in character"],
  "creator_id": "creator-1",
  "popularity_score": 42,
  "symbol": "MCAI"
}`

const rex = `{
  "identity": {"agentName": "Rex", "bio": "A friendly dog."},
  "behavior": {"topic": ["pets"]},
  "creator_id": "creator-2",
  "popularity_score": 7
}`

var _ = Describe("agents command", func() {
	var (
		tmpDir string
		dsn    string
		out    *bytes.Buffer
	)

	execute := func(args ...string) error {
		root := &cobra.Command{Use: "xeleb", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(agentscmder.NewAgentsCmd())

		out.Reset()
		root.SetOut(out)
		root.SetArgs(append(append([]string{"agents"}, args...),
			"--profile-driver", "sqlite",
			"--profile-dsn", dsn,
			"--config-dir", filepath.Join(tmpDir, ".xeleb"),
		))
		return root.Execute()
	}

	listed := func(args ...string) []profile.Profile {
		Expect(execute(append([]string{"list", "--json"}, args...)...)).To(Succeed())
		var ps []profile.Profile
		Expect(json.Unmarshal(out.Bytes(), &ps)).To(Succeed())
		return ps
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dsn = filepath.Join(tmpDir, "profiles.sqlite")
		out = &bytes.Buffer{}

		dir := filepath.Join(tmpDir, "agents")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "miss-china.json"), []byte(missChina), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "rex.json"), []byte(rex), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)).To(Succeed())

		Expect(execute("import", dir)).To(Succeed())
	})

	It("imports every JSON profile in a directory", func() {
		Expect(out.String()).To(ContainSubstring("2 inserted, 0 failed"))
	})

	It("fails the import when a profile is malformed", func() {
		bad := filepath.Join(tmpDir, "bad")
		Expect(os.MkdirAll(bad, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(bad, "broken.json"), []byte("{"), 0o644)).To(Succeed())

		Expect(execute("import", bad)).To(MatchError(ContainSubstring("1 profile files failed")))
	})

	It("lists profiles by popularity", func() {
		ps := listed()
		Expect(ps).To(HaveLen(2))
		Expect(ps[0].Name()).To(Equal("MISS CHINA AI"))
		Expect(ps[1].Name()).To(Equal("Rex"))
	})

	It("filters the list by topic", func() {
		ps := listed("--topic", "pets")
		Expect(ps).To(HaveLen(1))
		Expect(ps[0].Name()).To(Equal("Rex"))
	})

	It("shows one profile by name", func() {
		Expect(execute("show", "MISS CHINA AI")).To(Succeed())
		var p profile.Profile
		Expect(json.Unmarshal(out.Bytes(), &p)).To(Succeed())
		Expect(p.Symbol).To(Equal("MCAI"))
		Expect(p.Behavior.Topic).To(Equal([]string{"pageants", "fashion"}))
	})

	It("renders the system prompt", func() {
		Expect(execute("show", "MISS CHINA AI", "--prompt")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("2018"))
	})

	It("deletes a profile by id", func() {
		ps := listed()
		id := ps[1].AgentID

		Expect(execute("delete", jsonInt(id))).To(Succeed())
		Expect(listed()).To(HaveLen(1))

		Expect(execute("delete", jsonInt(id))).To(MatchError(ContainSubstring("not found")))
	})

	It("rejects invalid ids", func() {
		Expect(execute("delete", "abc")).To(MatchError(ContainSubstring("invalid agent id")))
	})
})

func jsonInt(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}
