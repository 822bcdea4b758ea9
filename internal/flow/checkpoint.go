package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocket-approval/mortgage-agent/internal/session"
)

const threadKeyPrefix = "thread:"

// Checkpointer snapshots conversation state into a session store.
type Checkpointer struct {
	store session.Store
}

func NewCheckpointer(store session.Store) *Checkpointer {
	return &Checkpointer{store: store}
}

// Load returns session.ErrNotFound (wrapped) for unknown threads.
func (c *Checkpointer) Load(ctx context.Context, threadID string) (*State, error) {
	data, err := c.store.Get(ctx, threadKeyPrefix+threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	if st.Answers == nil {
		st.Answers = Answers{}
	}
	return &st, nil
}

func (c *Checkpointer) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode thread %s: %w", st.ThreadID, err)
	}
	return c.store.Set(ctx, threadKeyPrefix+st.ThreadID, data)
}

func (c *Checkpointer) Delete(ctx context.Context, threadID string) error {
	return c.store.Delete(ctx, threadKeyPrefix+threadID)
}
