package dashboard

// panelCSS is the single stylesheet for every panel page. Kept inline
// so the binary ships self-contained next to its CDN assets.
const panelCSS = `
:root {
  --ink: #263238;
  --paper: #f4f6f5;
  --accent: #2e7d32;
  --accent-dark: #1b5e20;
  --danger: #c62828;
  --muted: #78909c;
}

* { box-sizing: border-box; }

body {
  margin: 0;
  font-family: "Segoe UI", Roboto, sans-serif;
  color: var(--ink);
  background: var(--paper);
}

nav.topbar {
  display: flex;
  align-items: center;
  gap: 1.25rem;
  padding: 0.6rem 1.25rem;
  background: var(--accent-dark);
  color: #fff;
}

nav.topbar .brand { font-weight: 700; letter-spacing: 0.03em; }

nav.topbar ul {
  display: flex;
  gap: 1rem;
  list-style: none;
  margin: 0;
  padding: 0;
}

nav.topbar a {
  color: #c8e6c9;
  text-decoration: none;
  padding: 0.25rem 0;
}

nav.topbar a.active, nav.topbar a:hover {
  color: #fff;
  border-bottom: 2px solid #fff;
}

nav.topbar .session {
  margin-left: auto;
  display: flex;
  align-items: center;
  gap: 0.75rem;
  font-size: 0.9rem;
}

nav.topbar button {
  background: transparent;
  border: 1px solid #c8e6c9;
  color: #fff;
  border-radius: 4px;
  padding: 0.25rem 0.75rem;
  cursor: pointer;
}

main { max-width: 70rem; margin: 1.5rem auto; padding: 0 1rem; }

.cards {
  display: grid;
  grid-template-columns: repeat(auto-fit, minmax(10rem, 1fr));
  gap: 1rem;
}

.card {
  background: #fff;
  border-radius: 8px;
  padding: 1rem;
  box-shadow: 0 1px 3px rgba(0, 0, 0, 0.12);
}

.card .label { color: var(--muted); font-size: 0.85rem; }
.card .value { font-size: 1.8rem; font-weight: 600; }
.card.failed .value { color: var(--danger); }
.card.nodata .value { color: var(--muted); }

.updated { color: var(--muted); font-size: 0.8rem; margin: 0.5rem 0 1rem; }

.stale {
  background: #fff3e0;
  border-left: 4px solid #ef6c00;
  padding: 0.5rem 0.75rem;
  margin-bottom: 1rem;
}

table {
  width: 100%;
  border-collapse: collapse;
  background: #fff;
  border-radius: 8px;
  overflow: hidden;
  box-shadow: 0 1px 3px rgba(0, 0, 0, 0.12);
}

th, td { text-align: left; padding: 0.5rem 0.75rem; }
thead { background: #eceff1; }
tbody tr:nth-child(even) { background: #fafafa; }

.status-dot {
  display: inline-block;
  width: 0.7rem;
  height: 0.7rem;
  border-radius: 50%;
  margin-right: 0.4rem;
}

#map, #zones-map {
  height: 24rem;
  border-radius: 8px;
  margin: 1rem 0;
}

.charts { display: grid; grid-template-columns: 2fr 1fr; gap: 1rem; }
.charts canvas { background: #fff; border-radius: 8px; padding: 0.5rem; }

form.auth {
  max-width: 22rem;
  margin: 4rem auto;
  background: #fff;
  padding: 2rem;
  border-radius: 8px;
  box-shadow: 0 2px 6px rgba(0, 0, 0, 0.15);
}

form.auth label { display: block; margin: 0.75rem 0 0.25rem; font-size: 0.9rem; }

form.auth input {
  width: 100%;
  padding: 0.5rem;
  border: 1px solid #b0bec5;
  border-radius: 4px;
}

form.auth button {
  width: 100%;
  margin-top: 1.25rem;
  padding: 0.6rem;
  background: var(--accent);
  color: #fff;
  border: none;
  border-radius: 4px;
  font-size: 1rem;
  cursor: pointer;
}

form.auth button:hover { background: var(--accent-dark); }

.form-error {
  background: #ffebee;
  border-left: 4px solid var(--danger);
  padding: 0.5rem 0.75rem;
  margin-bottom: 0.75rem;
}

.hint { color: var(--muted); font-size: 0.8rem; }
`
