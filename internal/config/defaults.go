package config

// DefaultConfigYAML is written by `wheelcity init`.
const DefaultConfigYAML = `# WheelCity configuration
#
# Every key can be overridden with an environment variable, for example
# WHEELCITY_INFERENCE_API_KEY or WHEELCITY_SERVER_PORT. A .env file in the
# working directory is read first.

log:
  level: info        # debug, info, warn, error
  format: auto       # auto, text, json

server:
  host: localhost
  port: 8080
  cors_origins:
    - http://localhost:3000
  request_timeout: 2m

store:
  path: .wheelcity/wheelcity.db

internal:
  # Required for POST /venues, POST /venues/{id}/label and DELETE /reports/{id}.
  # Leave empty to disable those routes.
  api_key: ""

evidence:
  timeout: 15s
  max_bytes: 10485760
  user_agent: wheelcity-evidence/1.0

inference:
  provider: disabled   # gemini, disabled
  api_key: ""
  model: gemini-2.5-flash
  timeout: 30s
  temperature: 0
  requests_per_second: 2
  burst: 4
  max_concurrent: 4
  allowed_mime_types:
    - image/jpeg
    - image/png
    - image/webp

reconcile:
  # Bounds each evidence fetch and each inference call in a re-evaluation.
  call_timeout: 45s
`
