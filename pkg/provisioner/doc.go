/*
Package provisioner runs remote configuration against chain nodes.

The Provisioner interface takes a deployment name, target hosts, a private key
path and a variable bundle, and returns a structured Result. The Ansible
implementation shells out to ansible-playbook, routing SSH through the chain's
jumpbox:

	ansible-playbook <dir>/deploy-geth.yml -i 10.0.0.7, --user=ubuntu \
	    --private-key=/tmp/catena-key-123 \
	    --ssh-common-args='-o ProxyCommand="ssh -q -i /tmp/catena-key-456 -W %h:%p ubuntu@52.1.2.3" -o StrictHostKeyChecking=no' \
	    --extra-vars='{"network_id":..., "node_id_file":"/tmp/catena-node-id-789"}'

Playbooks report the node's peer identifier by writing it to node_id_file;
the runner reads it into Result.NodeID and removes the file.
*/
package provisioner
