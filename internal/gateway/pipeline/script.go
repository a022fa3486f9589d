package pipeline

import "bytes"

// RecoveryScriptPath is the reserved path the gateway serves the client
// recovery script under. The injected tag references it root-relative so it
// resolves on the proxied site's own domain.
const RecoveryScriptPath = "/__edgelift/recover.js"

// recoveryScriptTag is inserted before </head> on pages where at least one
// URL was rewritten.
var recoveryScriptTag = []byte(`<script src="` + RecoveryScriptPath + `" defer></script>`)

// RecoveryScript restores the origin URL on media elements whose edge load
// failed. Edge URLs embed the origin as the first path segment, so the
// script can reverse the mapping locally without contacting the gateway.
// Elements are retried at most once, tracked via data-edgelift-failed.
var RecoveryScript = []byte(`(function () {
  'use strict';

  var MARKER = 'data-edgelift';
  var RECOVER = 'data-edgelift-recover';
  var FAILED = 'data-edgelift-failed';

  function originUrl(edgeUrl) {
    var u;
    try {
      u = new URL(edgeUrl, window.location.href);
    } catch (e) {
      return null;
    }
    var path = u.pathname.replace(/^\/+|\/+$/g, '');
    var slash = path.indexOf('/');
    if (slash < 1 || slash === path.length - 1) {
      return null;
    }
    return 'https://' + path.slice(0, slash) + '/' + path.slice(slash + 1) + u.search + u.hash;
  }

  function recoverImage(el) {
    if (el.getAttribute(FAILED) === '1') {
      return;
    }
    el.setAttribute(FAILED, '1');

    var restored = originUrl(el.getAttribute('src') || '');
    if (restored) {
      el.removeAttribute('srcset');
      el.setAttribute('src', restored);
    }
  }

  function recoverMedia(media) {
    if (media.getAttribute(FAILED) === '1') {
      return;
    }
    media.setAttribute(FAILED, '1');

    var changed = false;
    var restored = originUrl(media.getAttribute('src') || '');
    if (restored) {
      media.setAttribute('src', restored);
      changed = true;
    }
    var sources = media.querySelectorAll('source');
    for (var i = 0; i < sources.length; i++) {
      var r = originUrl(sources[i].getAttribute('src') || '');
      if (r) {
        sources[i].setAttribute('src', r);
        changed = true;
      }
    }
    if (changed && typeof media.load === 'function') {
      media.load();
    }
  }

  window.addEventListener('error', function (event) {
    var el = event.target;
    if (!el || !el.getAttribute) {
      return;
    }
    var tag = el.tagName ? el.tagName.toLowerCase() : '';
    if (tag === 'img' && el.getAttribute(MARKER) === '1') {
      recoverImage(el);
      return;
    }
    if ((tag === 'video' || tag === 'audio') && el.getAttribute(RECOVER) === '1') {
      recoverMedia(el);
      return;
    }
    if (tag === 'source') {
      var parent = el.parentElement;
      if (parent && parent.getAttribute && parent.getAttribute(RECOVER) === '1') {
        recoverMedia(parent);
      }
    }
  }, true);
})();
`)

// injectRecoveryScript inserts the recovery script tag before the document's
// closing head tag, falling back to the closing body tag. Documents with
// neither are returned unchanged.
func injectRecoveryScript(body []byte) ([]byte, bool) {
	idx := indexFold(body, []byte("</head>"))
	if idx < 0 {
		idx = indexFold(body, []byte("</body>"))
	}
	if idx < 0 {
		return body, false
	}

	out := make([]byte, 0, len(body)+len(recoveryScriptTag))
	out = append(out, body[:idx]...)
	out = append(out, recoveryScriptTag...)
	out = append(out, body[idx:]...)
	return out, true
}

// indexFold is a case-insensitive bytes.Index.
func indexFold(b, sub []byte) int {
	for i := 0; i+len(sub) <= len(b); i++ {
		if bytes.EqualFold(b[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}
