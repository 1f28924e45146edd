package a11y

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"
)

// xpathOfJS builds the same tag-indexed path the DOM walk produces. Like
// the walk, content of a shadow root continues from its host's path.
const xpathOfJS = `function (el) {
	const steps = [];
	for (let n = el; n && n.nodeType === 1; ) {
		let idx = 1;
		for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
			if (s.nodeName === n.nodeName) idx++;
		}
		const foreign = n.namespaceURI && n.namespaceURI !== 'http://www.w3.org/1999/xhtml';
		steps.unshift(foreign
			? "*[name()='" + n.nodeName + "'][" + idx + "]"
			: n.nodeName.toLowerCase() + "[" + idx + "]");
		const up = n.parentNode;
		n = up && up.nodeType === 11 && up.host ? up.host : n.parentElement;
	}
	return '/' + steps.join('/');
}`

// scrollableScript installs getScrollableElementXpaths when the page does
// not provide one and returns its result.
const scrollableScript = `(() => {
	if (typeof window.getScrollableElementXpaths !== 'function') {
		const xpathOf = ` + xpathOfJS + `;
		const canScroll = (el) => {
			const style = getComputedStyle(el);
			const scrollY = /(auto|scroll|overlay)/.test(style.overflowY) && el.scrollHeight > el.clientHeight;
			const scrollX = /(auto|scroll|overlay)/.test(style.overflowX) && el.scrollWidth > el.clientWidth;
			return scrollY || scrollX;
		};
		window.getScrollableElementXpaths = function () {
			const found = [];
			const root = document.scrollingElement || document.documentElement;
			if (root && root.scrollHeight > root.clientHeight) found.push(root);
			for (const el of document.querySelectorAll('*')) {
				if (el !== root && canScroll(el)) found.push(el);
			}
			found.sort((a, b) => b.scrollHeight - a.scrollHeight);
			return found.map(xpathOf);
		};
	}
	return window.getScrollableElementXpaths();
})()`

// worldCache keeps one isolated world per same-process frame. A world dies
// with its document, so a cached context is checked before it is reused.
type worldCache struct {
	mu  sync.Mutex
	ids map[proto.PageFrameID]proto.RuntimeExecutionContextID
}

func newWorldCache() *worldCache {
	return &worldCache{ids: make(map[proto.PageFrameID]proto.RuntimeExecutionContextID)}
}

// contextFor returns the execution context to evaluate scripts in the
// session's frame. Zero means the session default.
func (w *worldCache) contextFor(sess frameSession) (proto.RuntimeExecutionContextID, error) {
	if !sess.viaHost() {
		return 0, nil
	}

	w.mu.Lock()
	id, ok := w.ids[sess.frameID]
	w.mu.Unlock()
	if ok && contextAlive(sess.client, id) {
		return id, nil
	}

	world, err := proto.PageCreateIsolatedWorld{
		FrameID:   sess.frameID,
		WorldName: "a11y-agent",
	}.Call(sess.client)
	if err != nil {
		w.forget(sess.frameID)
		return 0, fmt.Errorf("create isolated world for %s: %w", sess.frameID, err)
	}

	w.mu.Lock()
	w.ids[sess.frameID] = world.ExecutionContextID
	w.mu.Unlock()
	return world.ExecutionContextID, nil
}

func (w *worldCache) forget(id proto.PageFrameID) {
	w.mu.Lock()
	delete(w.ids, id)
	w.mu.Unlock()
}

func (w *worldCache) reset() {
	w.mu.Lock()
	clear(w.ids)
	w.mu.Unlock()
}

func contextAlive(c proto.Client, id proto.RuntimeExecutionContextID) bool {
	res, err := proto.RuntimeEvaluate{
		Expression:    "1",
		ContextID:     id,
		ReturnByValue: true,
	}.Call(c)
	return err == nil && res.ExceptionDetails == nil
}

// scrollableBackendIDs is best effort: any failure yields an empty set.
func scrollableBackendIDs(sess frameSession, execCtx proto.RuntimeExecutionContextID) map[int]bool {
	ids := make(map[int]bool)

	res, err := proto.RuntimeEvaluate{
		Expression:    scrollableScript,
		ContextID:     execCtx,
		ReturnByValue: true,
	}.Call(sess.client)
	if err != nil || res.ExceptionDetails != nil || res.Result == nil {
		return ids
	}

	for _, v := range res.Result.Value.Arr() {
		xp := v.Str()
		if xp == "" {
			continue
		}
		id, err := resolveXPathBackendID(sess, execCtx, xp)
		if err != nil || id <= 0 {
			continue
		}
		ids[id] = true
	}
	return ids
}

// resolveXPathBackendID evaluates xp in the frame and returns the backend
// id of the first match, or 0 when nothing matches.
func resolveXPathBackendID(sess frameSession, execCtx proto.RuntimeExecutionContextID, xp string) (int, error) {
	res, err := proto.RuntimeEvaluate{
		Expression: fmt.Sprintf(
			`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
			jsString(xp)),
		ContextID: execCtx,
	}.Call(sess.client)
	if err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", xp, err)
	}
	if res.ExceptionDetails != nil {
		return 0, fmt.Errorf("evaluate %s: %s", xp, res.ExceptionDetails.Text)
	}
	if res.Result == nil || res.Result.ObjectID == "" {
		return 0, nil
	}
	defer func() {
		_ = proto.RuntimeReleaseObject{ObjectID: res.Result.ObjectID}.Call(sess.client)
	}()

	desc, err := proto.DOMDescribeNode{ObjectID: res.Result.ObjectID}.Call(sess.client)
	if err != nil {
		return 0, fmt.Errorf("describe %s: %w", xp, err)
	}
	if desc.Node == nil {
		return 0, nil
	}
	return int(desc.Node.BackendNodeID), nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
