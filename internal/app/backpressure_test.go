package app_test

import (
	"context"
	"testing"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/core/mocks"
	"go.uber.org/mock/gomock"
)

func TestBackpressure_KickClosesSlowConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	slow := mocks.NewMockSignalConnection(ctrl)
	slow.EXPECT().ID().Return("slow").AnyTimes()
	slow.EXPECT().TrySend(gomock.Any()).Return(core.ErrBackpressure)
	slow.EXPECT().Close()

	r := app.NewRelay(app.WithPolicy(app.KickPolicy{}))
	r.Connect(context.Background(), "alice", slow)
}

func TestBackpressure_DropKeepsConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	slow := mocks.NewMockSignalConnection(ctrl)
	slow.EXPECT().ID().Return("slow").AnyTimes()
	slow.EXPECT().TrySend(gomock.Any()).Return(core.ErrBackpressure)
	slow.EXPECT().Close().Times(0)

	r := app.NewRelay()
	r.Connect(context.Background(), "alice", slow)
}

func TestClosedConnection_NeverKicked(t *testing.T) {
	ctrl := gomock.NewController(t)
	gone := mocks.NewMockSignalConnection(ctrl)
	gone.EXPECT().ID().Return("gone").AnyTimes()
	gone.EXPECT().TrySend(gomock.Any()).Return(core.ErrConnClosed)
	gone.EXPECT().Close().Times(0)

	r := app.NewRelay(app.WithPolicy(app.KickPolicy{}))
	r.Connect(context.Background(), "alice", gone)
}
