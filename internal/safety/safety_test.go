package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k := New(nil, "confirm destroy")
	k.RegisterTier("list_vms", TierGreen)
	k.RegisterTier("set_preference", TierYellow)
	k.RegisterTier("stop_vm", TierRed)
	k.RegisterTier("delete_vm", TierOrange)
	k.RegisterTier("reboot_node", TierBlack)
	k.SetProtectedResources([]ProtectedResource{
		{VMID: "103", Label: "management VM"},
	})
	return k
}

func TestCheckSafety_UnknownToolIsBlack(t *testing.T) {
	k := newTestKernel(t)
	d := k.CheckSafety(context.Background(), "does_not_exist", nil, false)
	require.False(t, d.Allowed)
	assert.Equal(t, TierBlack, d.Tier)
}

func TestCheckSafety_BlackBlockedWithoutOverride(t *testing.T) {
	k := newTestKernel(t)
	d := k.CheckSafety(context.Background(), "reboot_node", map[string]any{"node": "Home"}, false)
	require.False(t, d.Allowed)
	assert.Equal(t, TierBlack, d.Tier)
	assert.Contains(t, d.Reason, "BLACK")
}

func TestCheckSafety_BlackAllowedUnderOverride(t *testing.T) {
	k := newTestKernel(t)
	ctx := RunWithContext(context.Background(), true)
	d := k.CheckSafety(ctx, "reboot_node", map[string]any{"node": "Home"}, false)
	require.True(t, d.Allowed)
}

func TestCheckSafety_RedRequiresConfirmation(t *testing.T) {
	k := newTestKernel(t)
	args := map[string]any{"node": "Home", "vmid": 200}

	d := k.CheckSafety(context.Background(), "stop_vm", args, false)
	require.False(t, d.Allowed)
	assert.Equal(t, TierRed, d.Tier)
	assert.Contains(t, d.Reason, "confirmed")

	d = k.CheckSafety(context.Background(), "stop_vm", args, true)
	require.True(t, d.Allowed)
}

func TestCheckSafety_ProtectedResourceOverridesConfirmation(t *testing.T) {
	k := newTestKernel(t)
	args := map[string]any{"node": "pve", "vmid": 103}
	d := k.CheckSafety(context.Background(), "stop_vm", args, true)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "103")
}

func TestCheckSafety_OrangeRequiresKeyword(t *testing.T) {
	k := newTestKernel(t)
	args := map[string]any{"vmid": 50}

	d := k.CheckSafety(context.Background(), "delete_vm", args, false)
	require.False(t, d.Allowed)

	args["keyword"] = " Confirm Destroy "
	d = k.CheckSafety(context.Background(), "delete_vm", args, false)
	require.True(t, d.Allowed)
}

func TestCheckSafety_YellowAndGreenAlwaysAllowed(t *testing.T) {
	k := newTestKernel(t)
	d := k.CheckSafety(context.Background(), "list_vms", nil, false)
	require.True(t, d.Allowed)

	d = k.CheckSafety(context.Background(), "set_preference", map[string]any{"key": "x"}, false)
	require.True(t, d.Allowed)
}

func TestSanitizePath_ProtectedPrefixBlocked(t *testing.T) {
	k := newTestKernel(t)
	res := k.SanitizePath("/etc/pve/priv/secret", "")
	require.False(t, res.Safe)
}

func TestSanitizePath_OutsideAllowlistBlocked(t *testing.T) {
	k := newTestKernel(t)
	res := k.SanitizePath("/home/operator/notes.txt", "")
	require.False(t, res.Safe)
}

func TestSanitizePath_AllowedBaseOK(t *testing.T) {
	k := newTestKernel(t)
	res := k.SanitizePath("/tmp/upload.bin", "")
	require.True(t, res.Safe)
	assert.Equal(t, "/tmp/upload.bin", res.ResolvedPath)
}

func TestValidateURL_PrivateIPLiteralBlocked(t *testing.T) {
	k := newTestKernel(t)
	res := k.ValidateURL("http://192.168.1.5/admin")
	require.False(t, res.Safe)
}

func TestValidateURL_LoopbackMappedIPv6Blocked(t *testing.T) {
	k := newTestKernel(t)
	res := k.ValidateURL("http://[::ffff:127.0.0.1]/")
	require.False(t, res.Safe)
}

func TestValidateURL_BadSchemeBlocked(t *testing.T) {
	k := newTestKernel(t)
	res := k.ValidateURL("ftp://example.com/file")
	require.False(t, res.Safe)
}

func TestSanitizeCommand_BlockedPatternAlwaysDenied(t *testing.T) {
	k := newTestKernel(t)
	res := k.SanitizeCommand("rm -rf /", true)
	require.False(t, res.Safe)
}

func TestSanitizeCommand_AllowedPrefixWithoutOverride(t *testing.T) {
	k := newTestKernel(t)
	res := k.SanitizeCommand("df -h", false)
	require.True(t, res.Safe)

	res = k.SanitizeCommand("some-random-binary --flag", false)
	require.False(t, res.Safe)
}

func TestSanitizeCommand_OverrideBypassesPrefixRequirement(t *testing.T) {
	k := newTestKernel(t)
	res := k.SanitizeCommand("some-random-binary --flag", true)
	require.True(t, res.Safe)
}

func TestSanitizeNodeName(t *testing.T) {
	k := newTestKernel(t)
	name, err := k.SanitizeNodeName("pve-node-01")
	require.NoError(t, err)
	assert.Equal(t, "pve-node-01", name)

	_, err = k.SanitizeNodeName("../etc/passwd")
	require.Error(t, err)
}

func TestIsSecretFile(t *testing.T) {
	k := newTestKernel(t)
	blocked, _ := k.IsSecretFile("/root/.ssh/id_rsa")
	assert.True(t, blocked)

	blocked, _ = k.IsSecretFile("/var/lib/jarvis/notes.txt")
	assert.False(t, blocked)
}

func TestValidateApprovalKeyword(t *testing.T) {
	k := newTestKernel(t)
	assert.True(t, k.ValidateApprovalKeyword("  Confirm Destroy  "))
	assert.False(t, k.ValidateApprovalKeyword("nope"))
}
