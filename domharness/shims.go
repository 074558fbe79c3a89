package domharness

// baseShimsJS is installed via Page.EvalOnNewDocument before any page script
// runs. It exists purely so arbitrary page scripts don't throw while probing
// for browser features rod's headless Chromium doesn't wire up the way a
// full desktop browser would (ResizeObserver callbacks never fire headless,
// CSS Typed OM units aren't always present, etc). Shims must never fail
// loudly: a thrown error here aborts script evaluation for the whole
// document and hides every resource that script would have referenced.
const baseShimsJS = `() => {
  if (window.__lighterceptorBaseShims) { return; }
  window.__lighterceptorBaseShims = true;

  if (typeof window.matchMedia !== 'function') {
    window.matchMedia = function (q) {
      return {
        matches: false,
        media: q,
        addListener: function () {},
        removeListener: function () {},
        addEventListener: function () {},
        removeEventListener: function () {},
        onchange: null,
        dispatchEvent: function () { return false; },
      };
    };
  }

  function noopObserver() {
    return {
      observe: function () {},
      unobserve: function () {},
      disconnect: function () {},
      takeRecords: function () { return []; },
    };
  }
  if (typeof window.IntersectionObserver !== 'function') {
    window.IntersectionObserver = function () { return noopObserver(); };
    window.IntersectionObserverEntry = function () {};
  }
  if (typeof window.ResizeObserver !== 'function') {
    window.ResizeObserver = function () { return noopObserver(); };
  }

  if (window.Element && !Element.prototype.animate) {
    Element.prototype.animate = function () {
      var finished = Promise.resolve();
      return {
        cancel: function () {},
        finish: function () {},
        play: function () {},
        pause: function () {},
        reverse: function () {},
        finished: finished,
      };
    };
  }

  if (window.CSS && typeof window.CSS.px !== 'function') {
    ['px', 'percent', 'em', 'rem', 'vw', 'vh', 'deg', 'rad', 'fr', 's', 'ms'].forEach(function (unit) {
      var suffix = unit === 'percent' ? '%' : unit;
      window.CSS[unit] = function (n) { return n + suffix; };
    });
  }

  function stubGLContext() {
    return new Proxy({}, {
      get: function (target, prop) {
        if (prop === 'getExtension') { return function () { return null; }; }
        if (prop === 'createShader') { return function () { return {}; }; }
        if (prop === 'getShaderInfoLog') { return function () { return ''; }; }
        if (prop === 'getParameter') { return function () { return 0; }; }
        if (!(prop in target)) { return function () {}; }
        return target[prop];
      },
    });
  }

  if (window.HTMLCanvasElement) {
    var origGetContext = HTMLCanvasElement.prototype.getContext;
    HTMLCanvasElement.prototype.getContext = function (type) {
      if (type === 'webgl' || type === 'webgl2' || type === 'experimental-webgl') {
        return stubGLContext();
      }
      try {
        return origGetContext.apply(this, arguments);
      } catch (e) {
        return null;
      }
    };
  }
  if (window.CanvasRenderingContext2D && !CanvasRenderingContext2D.prototype.roundRect) {
    CanvasRenderingContext2D.prototype.roundRect = function () {};
  }

  // An empty Figma/feature-manifest object for page scripts that look for
  // one. fetch and XHR are not stubbed here, so manifest requests a page
  // issues go to the network like any other request.
  window.__lighterceptorManifestStub = { layers: [], components: [] };
}`

// loadEventJS dispatches a single load event and fires a hover event against
// every element once, so lazy code paths gated on mouseover get a chance to
// run before the settle window starts counting down.
const loadEventJS = `() => {
  window.dispatchEvent(new Event('load'));
  document.querySelectorAll('*').forEach(function (el) {
    try {
      el.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
    } catch (e) {}
  });
}`
