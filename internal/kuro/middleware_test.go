package kuro_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/kuro"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
)

func TestClassifyLoginStatus(t *testing.T) {
	tests := []struct {
		name    string
		resp    kuro.Response
		status  domain.LoginStatus
		blocked bool
	}{
		{"request ok without role", kuro.Response{Msg: "请求成功"}, domain.LoginStatusUnbound, false},
		{"system busy", kuro.Response{Msg: "系统繁忙，请稍后再试"}, domain.LoginStatusUnbound, false},
		{"log in again", kuro.Response{Msg: "请重新登录"}, domain.LoginStatusExpired, false},
		{"login expired", kuro.Response{Msg: "登录已过期"}, domain.LoginStatusExpired, false},
		{"access blocked", kuro.Response{Msg: "访问被阻断"}, domain.LoginStatusRateLimited, true},
		{"rbac data", kuro.Response{Data: json.RawMessage(`"RABC denied"`)}, domain.LoginStatusRateLimited, true},
		{"access denied data", kuro.Response{Data: json.RawMessage(`"access denied"`)}, domain.LoginStatusRateLimited, true},
		{"other", kuro.Response{Msg: "something else"}, domain.LoginStatusUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, blocked := kuro.ClassifyLoginStatus(&tt.resp)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.blocked, blocked)
		})
	}
}

func staticCall(resp *kuro.Response) kuro.CallFunc {
	return func(context.Context, *kuro.Request) (*kuro.Response, error) {
		return resp, nil
	}
}

func TestCheckLoginStatus_SkipsCallsWithoutPlayer(t *testing.T) {
	call := kuro.Chain(staticCall(&kuro.Response{Code: 220, Msg: "登录已过期"}),
		kuro.CheckLoginStatus(kuro.LoginHooks{}, metrics.Discard()))

	resp, err := call(context.Background(), &kuro.Request{Endpoint: "/x"})
	require.NoError(t, err)
	require.Equal(t, 220, resp.Code)
}

func TestCheckLoginStatus_UnknownMessageAlerts(t *testing.T) {
	notifier := &recordingNotifier{}
	call := kuro.Chain(staticCall(&kuro.Response{Code: 500, Msg: "odd failure"}),
		kuro.CheckLoginStatus(kuro.LoginHooks{Notifier: notifier}, metrics.Discard()))

	_, err := call(context.Background(), &kuro.Request{Endpoint: "/x", PlayerID: "100000001"})
	var loginErr *domain.LoginStatusError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, domain.LoginStatusUnknown, loginErr.Status)
	require.Equal(t, []string{"odd failure"}, notifier.messages)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) kuro.Middleware {
		return func(next kuro.CallFunc) kuro.CallFunc {
			return func(ctx context.Context, req *kuro.Request) (*kuro.Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	call := kuro.Chain(staticCall(&kuro.Response{Code: 200}), mw("outer"), mw("inner"))
	_, err := call(context.Background(), &kuro.Request{})
	require.NoError(t, err)
	require.Equal(t, []string{"outer", "inner"}, order)
}
