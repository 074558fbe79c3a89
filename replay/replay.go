// Package replay implements C8: the replay-patch library. Every function
// here builds a pure JS source fragment; none of it executes in this
// process. The fragments are meant to be concatenated into an archived
// page's preamble and run there, answering fetch/XHR/WebSocket/EventSource
// calls against a previously captured RequestTable instead of the network.
package replay

import "fmt"

// Context is the small templating seam §9 calls for. OriginalSuffix names
// the property each patch stashes its original implementation under
// (mirrors the interceptor's own __pagepocketOriginal convention so the two
// halves of the system read consistently); it defaults to
// "__pagepocketOriginal" when empty.
type Context struct {
	OriginalSuffix string
}

func (c Context) suffix() string {
	if c.OriginalSuffix == "" {
		return "__pagepocketOriginal"
	}
	return c.OriginalSuffix
}

// PreloadFetchRecorder installs a fetch wrapper that records every outgoing
// request/response pair during the live capture run. Not on the
// Lighterceptor intercept path (which captures at the DOM property-setter
// level) but part of the replay contract's documented preload stage.
func PreloadFetchRecorder(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (window.__pagepocketPreloadFetchInstalled) { return; }
  window.__pagepocketPreloadFetchInstalled = true;
  const orig = window.fetch;
  window.fetch = function (input, init) {
    const url = typeof input === 'string' ? input : (input && input.url) || '';
    const method = (init && init.method) || (input && input.method) || 'GET';
    return orig.call(window, input, init).then(function (response) {
      const clone = response.clone();
      clone.text().then(function (body) {
        window.__pagepocketRecordPreload && window.__pagepocketRecordPreload({
          method: method, url: url, status: response.status, statusText: response.statusText, body: body,
        });
      }).catch(function () {});
      return response;
    });
  };
  window.fetch.%[1]s = orig;
})();`, ctx.suffix())
}

// PreloadXHRRecorder is PreloadFetchRecorder's XMLHttpRequest counterpart.
func PreloadXHRRecorder(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (window.__pagepocketPreloadXHRInstalled) { return; }
  window.__pagepocketPreloadXHRInstalled = true;
  const origOpen = XMLHttpRequest.prototype.open;
  const origSend = XMLHttpRequest.prototype.send;
  XMLHttpRequest.prototype.open = function (method, url) {
    this.__pagepocketMethod = method;
    this.__pagepocketUrl = url;
    return origOpen.apply(this, arguments);
  };
  XMLHttpRequest.prototype.send = function (body) {
    this.addEventListener('loadend', () => {
      window.__pagepocketRecordPreload && window.__pagepocketRecordPreload({
        method: this.__pagepocketMethod, url: this.__pagepocketUrl,
        status: this.status, statusText: this.statusText, body: this.responseText,
      });
    });
    return origSend.apply(this, arguments);
  };
  XMLHttpRequest.prototype.open.%[1]s = origOpen;
  XMLHttpRequest.prototype.send.%[1]s = origSend;
})();`, ctx.suffix())
}

// ReplayFetchResponder replaces window.fetch so it answers exclusively from
// the captured request table once installed in an archived page.
func ReplayFetchResponder(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (window.fetch && window.fetch.%[1]s) { return; }
  const orig = window.fetch;
  window.fetch = async function (input, init) {
    await ready;
    const url = typeof input === 'string' ? input : (input && input.url) || '';
    const method = (init && init.method) || 'GET';
    const body = init && init.body;
    try {
      const record = findRecord(method, url, body);
      if (record) { return responseFromRecord(record); }
    } catch (e) {}
    return new Response('', { status: 404, statusText: 'Not Found' });
  };
  window.fetch.%[1]s = orig;
})();`, ctx.suffix())
}

// ReplayXHRResponder is ReplayFetchResponder's XMLHttpRequest counterpart.
// Delivery happens via a microtask so readystatechange/load/loadend fire
// the way a real network round trip would, covering both the legacy on*
// hooks and dispatchEvent.
func ReplayXHRResponder(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (XMLHttpRequest.prototype.open.%[1]s) { return; }
  const origOpen = XMLHttpRequest.prototype.open;
  const origSend = XMLHttpRequest.prototype.send;

  XMLHttpRequest.prototype.open = function (method, url) {
    this.__pagepocketMethod = method;
    this.__pagepocketUrl = url;
    return origOpen.apply(this, arguments);
  };

  XMLHttpRequest.prototype.send = function (body) {
    const xhr = this;
    ready.then(function () {
      let record = null;
      try { record = findRecord(xhr.__pagepocketMethod, xhr.__pagepocketUrl, body); } catch (e) {}

      const status = record ? record.status : 404;
      const statusText = record ? record.statusText : 'Not Found';
      const text = record ? (record.bodyEncoding === 'base64' ? '' : record.body) : '';

      queueMicrotask(function () {
        defineProp(xhr, 'readyState', 4);
        defineProp(xhr, 'status', status);
        defineProp(xhr, 'statusText', statusText);
        defineProp(xhr, 'response', xhr.responseType === 'arraybuffer' && record && record.bodyEncoding === 'base64'
          ? decodeBase64(record.body).buffer : text);
        defineProp(xhr, 'responseText', text);

        if (typeof xhr.onreadystatechange === 'function') { xhr.onreadystatechange(); }
        xhr.dispatchEvent(new Event('readystatechange'));
        if (typeof xhr.onload === 'function') { xhr.onload(); }
        xhr.dispatchEvent(new Event('load'));
        if (typeof xhr.onloadend === 'function') { xhr.onloadend(); }
        xhr.dispatchEvent(new Event('loadend'));
      });
    });
  };

  XMLHttpRequest.prototype.open.%[1]s = origOpen;
  XMLHttpRequest.prototype.send.%[1]s = origSend;
  ensureReplayPatches();
})();`, ctx.suffix())
}

// ReplayBeaconStub satisfies navigator.sendBeacon's call shape without
// emitting any traffic from the archived page.
func ReplayBeaconStub(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (navigator.sendBeacon && navigator.sendBeacon.%[1]s) { return; }
  const orig = navigator.sendBeacon ? navigator.sendBeacon.bind(navigator) : null;
  navigator.sendBeacon = function () { return true; };
  navigator.sendBeacon.%[1]s = orig;
})();`, ctx.suffix())
}

// ReplayWebSocketStub replaces WebSocket with a constructor that never
// connects but satisfies the usual event-handler surface.
func ReplayWebSocketStub(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (window.WebSocket && window.WebSocket.%[1]s) { return; }
  const orig = window.WebSocket;

  function StubWebSocket(url, protocols) {
    this.url = url;
    this.readyState = 0;
    this.onopen = null; this.onclose = null; this.onerror = null; this.onmessage = null;
    setTimeout(() => { this.readyState = 1; if (this.onopen) this.onopen({}); }, 0);
  }
  StubWebSocket.prototype.send = function () {};
  StubWebSocket.prototype.close = function () {
    this.readyState = 3;
    if (this.onclose) this.onclose({});
  };
  StubWebSocket.prototype.addEventListener = function () {};
  StubWebSocket.prototype.removeEventListener = function () {};
  StubWebSocket.CONNECTING = 0; StubWebSocket.OPEN = 1; StubWebSocket.CLOSING = 2; StubWebSocket.CLOSED = 3;

  window.WebSocket = StubWebSocket;
  window.WebSocket.%[1]s = orig;
})();`, ctx.suffix())
}

// ReplayEventSourceStub is WebSocket's EventSource counterpart.
func ReplayEventSourceStub(ctx Context) string {
	return fmt.Sprintf(`(function () {
  if (window.EventSource && window.EventSource.%[1]s) { return; }
  const orig = window.EventSource;

  function StubEventSource(url) {
    this.url = url;
    this.readyState = 0;
    this.onopen = null; this.onmessage = null; this.onerror = null;
    setTimeout(() => { this.readyState = 1; if (this.onopen) this.onopen({}); }, 0);
  }
  StubEventSource.prototype.close = function () { this.readyState = 2; };
  StubEventSource.prototype.addEventListener = function () {};
  StubEventSource.prototype.removeEventListener = function () {};

  window.EventSource = StubEventSource;
  window.EventSource.%[1]s = orig;
})();`, ctx.suffix())
}

// ReplaySVGImageRewriter rewrites SVG <image> href/xlink:href attributes to
// archive-local paths once the DOM is ready.
func ReplaySVGImageRewriter(ctx Context) string {
	return `(function () {
  function rewrite() {
    document.querySelectorAll('image').forEach(function (el) {
      ['href', 'xlink:href'].forEach(function (attr) {
        const v = el.getAttribute(attr);
        if (!v) { return; }
        const mapped = window.__pagepocketPathFor && window.__pagepocketPathFor(v);
        if (mapped) { el.setAttribute(attr, mapped); }
      });
    });
  }
  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', rewrite);
  } else {
    rewrite();
  }
})();`
}

// ReplayDOMRewrite rewrites the general URL-bearing attributes the static
// walk in htmlanalyzer discovers (src, srcset, href, poster, data) to their
// archive-local paths, via the same request→path map as the SVG rewriter.
func ReplayDOMRewrite(ctx Context) string {
	return `(function () {
  const attrsByTag = {
    IMG: ['src', 'srcset'], SOURCE: ['src', 'srcset'], SCRIPT: ['src'], LINK: ['href', 'imagesrcset'],
    IFRAME: ['src'], VIDEO: ['src', 'poster'], AUDIO: ['src'], TRACK: ['src'], EMBED: ['src'], OBJECT: ['data'],
  };
  function rewriteOne(el, attr) {
    const v = el.getAttribute(attr);
    if (!v) { return; }
    const mapped = window.__pagepocketPathFor && window.__pagepocketPathFor(v);
    if (mapped) { el.setAttribute(attr, mapped); }
  }
  function rewrite() {
    Object.keys(attrsByTag).forEach(function (tag) {
      const els = document.getElementsByTagName(tag);
      Array.prototype.forEach.call(els, function (el) {
        attrsByTag[tag].forEach(function (attr) { rewriteOne(el, attr); });
      });
    });
  }
  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', rewrite);
  } else {
    rewrite();
  }
})();`
}
