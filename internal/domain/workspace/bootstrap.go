package workspace

import (
	"context"

	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"go.uber.org/zap"
)

const starterHTML = `<h1>Hello, Coder!</h1>
<p>This is your live code editor.</p>
<button id="myButton">Click Me</button>
`

const starterCSS = `body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, 'Open Sans', 'Helvetica Neue', sans-serif;
  background-color: #f0f4f8;
  color: #1e293b;
  display: flex;
  flex-direction: column;
  justify-content: center;
  align-items: center;
  height: 100vh;
  margin: 0;
  text-align: center;
}

button {
  padding: 12px 24px;
  border: none;
  border-radius: 8px;
  font-size: 16px;
  background-color: #3b82f6;
  color: white;
  cursor: pointer;
  transition: transform 0.2s, background-color 0.3s;
}

button:hover {
  background-color: #2563eb;
  transform: translateY(-2px);
}
`

const starterJS = `const button = document.getElementById('myButton');
const heading = document.querySelector('h1');

const greetings = ['Hello!', '¡Hola!', 'Bonjour!', 'Hallo!', 'Ciao!'];
let currentIndex = 0;

button.addEventListener('click', () => {
  currentIndex = (currentIndex + 1) % greetings.length;
  heading.textContent = greetings[currentIndex];

  const randomColor = '#' + Math.floor(Math.random()*16777215).toString(16).padStart(6, '0');
  document.body.style.backgroundColor = randomColor;
});
`

// StarterBuffers returns the first-run workspace with fresh ids
func StarterBuffers(ids id.Source) []types.Buffer {
	return []types.Buffer{
		{ID: types.BufferID(ids.NewID(id.BufferPrefix)), Name: "index.html", Kind: types.KindHTML, Content: starterHTML},
		{ID: types.BufferID(ids.NewID(id.BufferPrefix)), Name: "style.css", Kind: types.KindCSS, Content: starterCSS},
		{ID: types.BufferID(ids.NewID(id.BufferPrefix)), Name: "script.js", Kind: types.KindJS, Content: starterJS},
	}
}

// Open loads persisted state once. Unreadable or empty state is replaced by
// the starter workspace; a stored selection is repaired against the buffers.
func (s *Store) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return nil
	}
	s.opened = true

	buffers, sel, err := s.load(ctx)
	if err != nil {
		s.log.Warn("stored workspace unreadable, starting fresh", zap.Error(err))
		buffers = nil
	}

	source := "stored"
	buffers = sanitizeBuffers(buffers)
	if len(buffers) == 0 {
		source = "starter"
		buffers = StarterBuffers(s.ids)
		sel = types.Selection{}
	}
	s.buffers = buffers
	s.active = repairSelection(buffers, sel)
	s.persistLocked(ctx)
	count := len(s.buffers)
	s.mu.Unlock()

	s.log.Info("workspace opened", zap.String("source", source), zap.Int("buffers", count))
	s.metrics.SetBuffers(count)
	s.done(OpLoad, true, Change{Op: OpLoad, Kinds: append([]types.Kind(nil), types.Kinds[:]...)})
	return nil
}

// sanitizeBuffers drops entries with an empty id, an unknown kind or a
// duplicate id. The first occurrence of an id wins.
func sanitizeBuffers(in []types.Buffer) []types.Buffer {
	seen := make(map[types.BufferID]struct{}, len(in))
	out := make([]types.Buffer, 0, len(in))
	for _, b := range in {
		if b.ID == "" || !b.Kind.Valid() {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}

// repairSelection keeps each slot only if it names a buffer of that kind,
// otherwise it falls back to the first buffer of the kind or none.
func repairSelection(buffers []types.Buffer, sel types.Selection) types.Selection {
	kinds := make(map[types.BufferID]types.Kind, len(buffers))
	for _, b := range buffers {
		kinds[b.ID] = b.Kind
	}

	var out types.Selection
	for _, kind := range types.Kinds {
		if cur, ok := sel.Get(kind); ok && kinds[cur] == kind {
			out.Set(kind, cur)
			continue
		}
		for _, b := range buffers {
			if b.Kind == kind {
				out.Set(kind, b.ID)
				break
			}
		}
	}
	return out
}
