package interceptor

import "fmt"

// injectorJS is installed once per Harness via Page.EvalOnNewDocument. It
// patches every URL-consuming surface listed in spec §4.5 so each one
// reports through a single bridge call, binding exposed as
// window[bindingName] by the Go side (see injector.go). Re-installation
// on the same window is a no-op, guarded by a marker flag.
func injectorJS(bindingName string) string {
	return fmt.Sprintf(`() => {
  if (window.__lighterceptorInstalled) { return; }
  window.__lighterceptorInstalled = true;

  const report = function (url, source, elTag, referrer) {
    try {
      if (!url) { return; }
      window[%[1]q](JSON.stringify({ url: String(url), source: source, element: elTag || '', referrer: referrer || document.baseURI }));
    } catch (e) {}
  };

  function patchAttrSetter(proto, attr, source) {
    const desc = Object.getOwnPropertyDescriptor(proto, attr) ||
      Object.getOwnPropertyDescriptor(HTMLElement.prototype, attr);
    if (!desc || !desc.set) { return; }
    Object.defineProperty(proto, attr, {
      configurable: true,
      enumerable: desc.enumerable,
      get: desc.get,
      set: function (value) {
        desc.set.call(this, value);
        report(value, source, this.tagName ? this.tagName.toLowerCase() : '', document.baseURI);
      },
    });
  }

  function extractSrcsetUrls(srcset) {
    if (!srcset) { return []; }
    return srcset.split(',').map(function (c) {
      return c.trim().split(/\s+/)[0];
    }).filter(Boolean);
  }

  function patchSrcset(proto, attr, source) {
    const desc = Object.getOwnPropertyDescriptor(proto, attr);
    if (!desc || !desc.set) { return; }
    Object.defineProperty(proto, attr, {
      configurable: true,
      enumerable: desc.enumerable,
      get: desc.get,
      set: function (value) {
        desc.set.call(this, value);
        extractSrcsetUrls(value).forEach(function (u) {
          report(u, source, this.tagName ? this.tagName.toLowerCase() : '', document.baseURI);
        }, this);
      },
    });
  }

  // <img>.src / <img>.srcset / <picture><source>.srcset -> img
  if (window.HTMLImageElement) {
    patchAttrSetter(HTMLImageElement.prototype, 'src', 'img');
    patchSrcset(HTMLImageElement.prototype, 'srcset', 'img');
  }
  if (window.HTMLSourceElement) {
    patchSrcset(HTMLSourceElement.prototype, 'srcset', 'img');
    patchAttrSetter(HTMLSourceElement.prototype, 'src', 'resource');
  }

  // resource-tagged surfaces
  if (window.HTMLScriptElement) { patchAttrSetter(HTMLScriptElement.prototype, 'src', 'resource'); }
  if (window.HTMLIFrameElement) { patchAttrSetter(HTMLIFrameElement.prototype, 'src', 'resource'); }
  if (window.HTMLMediaElement) {
    patchAttrSetter(HTMLMediaElement.prototype, 'src', 'resource');
    patchAttrSetter(HTMLVideoElement.prototype, 'poster', 'resource');
  }
  if (window.HTMLTrackElement) { patchAttrSetter(HTMLTrackElement.prototype, 'src', 'resource'); }
  if (window.HTMLEmbedElement) { patchAttrSetter(HTMLEmbedElement.prototype, 'src', 'resource'); }
  if (window.HTMLObjectElement) { patchAttrSetter(HTMLObjectElement.prototype, 'data', 'resource'); }
  if (window.HTMLLinkElement) {
    patchSrcset(HTMLLinkElement.prototype, 'imagesrcset', 'resource');

    const allowRel = new Set(['stylesheet', 'preload', 'prefetch', 'icon', 'modulepreload']);
    const maybeReport = function (link) {
      const rel = (link.rel || '').toLowerCase();
      if (link.href && allowRel.has(rel)) {
        report(link.href, rel === 'stylesheet' ? 'css' : 'resource', 'link', document.baseURI);
      }
    };
    // rel may be assigned after href (or vice versa); hooking both setters
    // means whichever completes the (rel, href) pair fires exactly once
    // per value, and maybeReport re-evaluates the full pair each time.
    ['href', 'rel'].forEach(function (attr) {
      const desc = Object.getOwnPropertyDescriptor(HTMLLinkElement.prototype, attr);
      if (!desc || !desc.set) { return; }
      Object.defineProperty(HTMLLinkElement.prototype, attr, {
        configurable: true,
        enumerable: desc.enumerable,
        get: desc.get,
        set: function (value) {
          desc.set.call(this, value);
          maybeReport(this);
        },
      });
    });
  }

  // inline style attribute / cssText / setProperty -> css
  function extractCssUrls(cssText) {
    const urls = [];
    const re = /url\(\s*(?:"([^"]*)"|'([^']*)'|([^'")\s]*))\s*\)/g;
    let m;
    while ((m = re.exec(cssText || '')) !== null) {
      urls.push(m[1] || m[2] || m[3]);
    }
    return urls.filter(Boolean);
  }

  if (window.Element) {
    const origSetAttribute = Element.prototype.setAttribute;
    Element.prototype.setAttribute = function (name, value) {
      origSetAttribute.call(this, name, value);
      if (name === 'style') {
        extractCssUrls(value).forEach(function (u) {
          report(u, 'css', this.tagName ? this.tagName.toLowerCase() : '', document.baseURI);
        }, this);
      }
    };
  }

  if (window.CSSStyleDeclaration) {
    const cssTextDesc = Object.getOwnPropertyDescriptor(CSSStyleDeclaration.prototype, 'cssText');
    if (cssTextDesc && cssTextDesc.set) {
      Object.defineProperty(CSSStyleDeclaration.prototype, 'cssText', {
        configurable: true,
        get: cssTextDesc.get,
        set: function (value) {
          cssTextDesc.set.call(this, value);
          extractCssUrls(value).forEach(function (u) { report(u, 'css', 'style', document.baseURI); });
        },
      });
    }

    const origSetProperty = CSSStyleDeclaration.prototype.setProperty;
    CSSStyleDeclaration.prototype.setProperty = function (prop, value, priority) {
      origSetProperty.call(this, prop, value, priority);
      extractCssUrls(value).forEach(function (u) { report(u, 'css', 'style', document.baseURI); });
    };
  }

  if (window.HTMLStyleElement) {
    const textDesc = Object.getOwnPropertyDescriptor(Node.prototype, 'textContent');
    if (textDesc && textDesc.set) {
      Object.defineProperty(HTMLStyleElement.prototype, 'textContent', {
        configurable: true,
        get: textDesc.get,
        set: function (value) {
          textDesc.set.call(this, value);
          extractCssUrls(value).forEach(function (u) { report(u, 'css', 'style', document.baseURI); });
        },
      });
    }
  }

  if (window.CSSStyleSheet && CSSStyleSheet.prototype.insertRule) {
    const origInsertRule = CSSStyleSheet.prototype.insertRule;
    CSSStyleSheet.prototype.insertRule = function (rule, index) {
      extractCssUrls(rule).forEach(function (u) { report(u, 'css', 'style', document.baseURI); });
      return origInsertRule.call(this, rule, index);
    };
  }

  // window.fetch -> fetch
  if (typeof window.fetch === 'function') {
    const origFetch = window.fetch;
    window.fetch = function (input, init) {
      const url = typeof input === 'string' ? input : (input && input.url) || '';
      report(url, 'fetch', '', document.baseURI);
      return origFetch.call(window, input, init);
    };
    window.fetch.__pagepocketOriginal = origFetch;
  }

  // XMLHttpRequest.open -> xhr
  if (window.XMLHttpRequest) {
    const origOpen = XMLHttpRequest.prototype.open;
    XMLHttpRequest.prototype.open = function (method, url) {
      report(url, 'xhr', '', document.baseURI);
      return origOpen.apply(this, arguments);
    };
  }
}`, bindingName)
}
